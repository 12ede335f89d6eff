package iterator

import "dictengine/pkg/tuple"

// Iterate pulls from an opened iterator until it is exhausted or fn returns
// false or an error. Nil tuples are skipped.
func Iterate(iter TupleIterator, fn func(*tuple.Tuple) (bool, error)) error {
	for {
		ok, err := iter.HasNext()
		if err != nil || !ok {
			return err
		}
		tup, err := iter.Next()
		if err != nil {
			return err
		}
		if tup == nil {
			continue
		}
		more, err := fn(tup)
		if err != nil || !more {
			return err
		}
	}
}

// ForEach applies fn to every remaining tuple.
func ForEach(iter TupleIterator, fn func(*tuple.Tuple) error) error {
	return Iterate(iter, func(tup *tuple.Tuple) (bool, error) {
		return true, fn(tup)
	})
}

// Collect materializes the remaining tuples. Scroll-insensitive cursors use
// it to snapshot their plan at open.
func Collect(iter TupleIterator) ([]*tuple.Tuple, error) {
	var rows []*tuple.Tuple
	err := ForEach(iter, func(tup *tuple.Tuple) error {
		rows = append(rows, tup)
		return nil
	})
	return rows, err
}
