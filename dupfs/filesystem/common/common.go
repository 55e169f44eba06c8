package common

// This package contains shared utilities and types used across filesystem packages.
// It provides path and depth helpers, the scan error taxonomy, and the
// atomic counters the scanner reports through.

// Note: Utility types are defined in their respective files.
// Use constructors like common.NewPathUtils() to create instances.
