// Package commands implements the arcana CLI. The root command builds one
// app.Client shared by every subcommand and closes it when the command
// returns.
package commands
