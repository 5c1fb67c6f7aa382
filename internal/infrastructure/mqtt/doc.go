// Package mqtt wraps paho.mqtt.golang for the panel's broker integration.
//
// The panel publishes server lifecycle status and events so that external
// tooling (dashboards, Discord bots, monitoring) can follow the server
// without polling the HTTP API, and subscribes to a command topic for
// remote start/stop.
//
// The client handles reconnection with exponential backoff, restores
// subscriptions after a reconnect, and registers a Last Will so the broker
// announces the panel going offline uncleanly.
package mqtt
