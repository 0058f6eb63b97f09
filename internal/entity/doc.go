// Package entity is the physical entity collaborator around lag
// compensation: identity fields, the attribute registry with per-cycle
// received flags, the kinematic state the compensator reads and writes, and
// Compensated, which wires an entity to a compensator and a time source.
package entity
