// Package types defines the dynamic record model, datasets, recycle-bin
// entries, the backend contract every persistence tier implements, and the
// standard errors shared by the land-records storage core.
package types
