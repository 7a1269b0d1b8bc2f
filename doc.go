/*
Package dmflite provides a local versioned object store for simulation data files.

Documents and folders are tracked in a working tree on the local file system.
Every change is recorded as an entry of an append-only history, each document
version keeps its content in a checksum-addressed blob store, and an index
rebuilt from the history answers lookups by path, identifier, version or checksum.

The store is exposed as a library (pkg/core) and as the dmflite command line tool.
*/
package dmflite
