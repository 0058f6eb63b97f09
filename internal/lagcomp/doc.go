// Package lagcomp extrapolates timestamped kinematic snapshots across the
// latency between when a state is sampled and when it is used.
//
// Responsibilities: the rigid-body KinematicState and its 13-slot
// integration layout, quaternion kinematics, the send-side and
// receive-side compensation entry points with their received-data gate,
// and the GenericCompensator that lets any continuous state reuse the same
// step-control loop through four hooks.
// Key types: KinematicState, Compensator, GenericCompensator, TraceCollector.
//
// Dependency rule: lagcomp never decides whether to transmit, whether
// ownership is held, or how attributes are encoded. It consumes a
// TimeSource, an Entity and a received flag.
package lagcomp
