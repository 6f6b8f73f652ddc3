// Package mqtt provides the broker connection used by the host link.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after reconnect
//   - Last Will and Testament (LWT) on the availability topic
//
// # Topics
//
// Every topic lives under the configured host prefix:
//
//	{prefix}/availability        bridge online/offline (retained, LWT)
//	{prefix}/out/{kind}          bridge → host (addnode, removenode, status, notices)
//	{prefix}/in/{kind}           host → bridge (customparams, start, addnodedone, ...)
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.Host.TopicPrefix)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.AllInbound(), 1,
//	    func(topic string, payload []byte) error {
//	        return dispatch(topics.InboundKind(topic), payload)
//	    })
package mqtt
