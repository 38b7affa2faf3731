// Package mocks provides shared test doubles for interfaces used across
// packages.
//
// Each mock has one function field per interface method. A nil field makes
// the method return zero values, so tests only set the behavior they need:
//
//	svc := &mocks.MockAccountService{
//	    AddBalanceFn: func(ctx context.Context, id uuid.UUID, amount int, source string) (int, error) {
//	        return 10, nil
//	    },
//	}
package mocks
