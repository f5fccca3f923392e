// Package types defines the Catalog interface, dataset entity types, and
// standard errors for the freshset toolkit.
//
// Records, training examples and dataset metadata are flat file artifacts:
// they are written once by one command and read once by the next.
package types
