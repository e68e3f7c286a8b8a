// Package errors provides coded diagnostics for kodbox.
//
// The store favors diagnostics over hard failures: a missing callable or a
// locked entry is reported, logged and returned as a value, never panicked.
// Every diagnostic carries a stable code that maps to a short message, a
// longer explanation and a category.
//
// # Error Categories
//
//   - runtime: store usage errors (unbound callable, locked entry)
//   - persistence: mirror serialization and write failures
//   - config: configuration file errors
//   - cli: command line usage errors
//
// # Usage
//
//	err := errors.New("K010").
//	    WithDetail("key \"user\" is locked").
//	    WithSuggestion("Pass store.Destructive() to override the lock")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR K010: Entry is locked
//	//
//	//   key "user" is locked
//	//
//	//   Hint: Pass store.Destructive() to override the lock
//
// Errors compare by code, so a sentinel built with New matches any error
// built from the same code:
//
//	var ErrLocked = errors.New("K010")
//	stderrors.Is(store.Set("user", v), ErrLocked) // true when rejected
package errors
