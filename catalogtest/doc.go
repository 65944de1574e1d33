// Package catalogtest provides a reusable contract suite for snapshot stores.
package catalogtest
