// Package node assembles the radio components into a running FTM node.
//
// A Node owns one driver and the components built on it: the role manager,
// the association supervisor, the ranging controller and the access-point
// starter and tracker. The Dispatcher is the only consumer of the driver's
// event channel. The Initiator and Responder are the two driving loops; a
// process runs one of them.
package node
