// Package federation models the slice of federation time management that
// lag compensation consumes: scenario time, the lookahead interval, the
// granted logical time and the execution configuration shared between
// federates. Logical time is held as 64-bit microseconds.
package federation
