// Package events holds the pieces of the client that deal with
// server-pushed events: the Event value, the listener Registry that fans
// events out, and the Tracker that turns response and event content into
// changes of the active subscription set.
package events
