// Package bridge feeds MQTT sensor traffic into the router.
//
// Devices that publish over MQTT instead of holding a WebSocket are treated
// as one more sender: each message goes through the same Router as WebSocket
// frames, so processors see them enriched identically. Payloads without a
// kind are stamped with the configured default (normally "sensor"), and the
// MQTT topic is added as "topic" when the payload does not carry one.
package bridge
