package mqtt

import "strings"

// Topic layout used by the hub:
//
//	hemma/sensor/<name>   sensor readings, JSON object payloads
//	hemma/hub/status      retained online/offline status of the hub
const (
	// TopicPrefix is the root of every hemma topic.
	TopicPrefix = "hemma"

	sensorSegment = "sensor"
)

// Topics provides builders for hemma MQTT topics.
type Topics struct{}

// Sensor returns the topic a named sensor publishes readings on.
//
// Example: hemma/sensor/dht
func (Topics) Sensor(name string) string {
	return TopicPrefix + "/" + sensorSegment + "/" + name
}

// AllSensors returns the wildcard subscription for every sensor.
func (Topics) AllSensors() string {
	return TopicPrefix + "/" + sensorSegment + "/+"
}

// HubStatus returns the retained hub status topic.
func (Topics) HubStatus() string {
	return TopicPrefix + "/hub/status"
}

// SensorName extracts the sensor name from a sensor topic. It returns false
// for any topic outside hemma/sensor/.
func SensorName(topic string) (string, bool) {
	name, ok := strings.CutPrefix(topic, TopicPrefix+"/"+sensorSegment+"/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
