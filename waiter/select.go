package waiter

import (
	"context"
	"reflect"
)

// reflectCase pairs a waiter slot index with its notification channel, for
// building a dynamic reflect.Select over however many slots are bound.
type reflectCase struct {
	idx int
	ch  chan struct{}
}

// sleepSelect blocks on an arbitrary number of channels plus ctx.Done(),
// using reflect.Select since Go's select statement cannot range over a
// slice of channels directly. This is the one place in the package that
// needs reflection; every other operation is ordinary channel code.
func sleepSelect(ctx context.Context, cases []reflectCase) (int, error) {
	if len(cases) == 0 {
		<-ctx.Done()
		return -1, ctx.Err()
	}

	selCases := make([]reflect.SelectCase, 0, len(cases)+1)
	for _, c := range cases {
		selCases = append(selCases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(c.ch),
		})
	}
	selCases = append(selCases, reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(ctx.Done()),
	})

	chosen, _, _ := reflect.Select(selCases)
	if chosen == len(cases) {
		return -1, ctx.Err()
	}
	return cases[chosen].idx, nil
}
