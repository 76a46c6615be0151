// Package deps checks that the external programs smoothieq shells out to are
// installed and resolvable.
package deps
