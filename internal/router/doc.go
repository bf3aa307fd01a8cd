// Package router classifies inbound frames by kind and fans them out.
//
// A "register" frame mutates the registry. Any kind with a configured route
// is broadcast to every open member of the route's target group, enriched
// with the sender identity and the receipt time in epoch milliseconds.
// Everything else is dropped without error.
//
// Classification uses the payload kind only; the sender's own role is not
// consulted.
package router
