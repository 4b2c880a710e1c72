// Package mqtt provides the hub's MQTT broker connection.
//
// The hub uses MQTT as a side channel for sensors that publish their
// readings to a broker rather than through the firmware bridge. It
// subscribes to hemma/sensor/+ and keeps a retained status on
// hemma/hub/status, with a Last Will so the broker reports an unexpected
// disconnect.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllSensors(), 1,
//	    func(topic string, payload []byte) error {
//	        name, _ := mqtt.SensorName(topic)
//	        ...
//	    })
package mqtt
