/*
Package types contains shared data structures used across Burrow packages.

Types here have no behavior beyond accessors so that any package can depend on
them without import cycles.
*/
package types
