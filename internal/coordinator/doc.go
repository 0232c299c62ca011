// Package coordinator runs the connect-or-provision lifecycle of a device.
//
// A Coordinator sits between three collaborators:
//
//   - a configstore.Store holding the saved parameter values
//   - a Provisioner that either connects with stored credentials or serves
//     the captive portal
//   - a NetworkDriver delivering link events
//
// Typical use:
//
//	store := configstore.New(configstore.NewDirStorage(dir), configstore.WithCredentialEraser(driver))
//	c := coordinator.New(store, portal, driver)
//	defer c.Close()
//
//	if _, err := c.RegisterParameter("mqtt_server", "mqtt_server", 40); err != nil {
//		return err
//	}
//	c.OnConnect(func() { dial(c.ParameterValue("mqtt_server")) })
//	if err := c.AutoConnect(ctx, "wifiprov-setup"); err != nil {
//		logging.Warn("Provisioning finished with errors", zap.Error(err))
//	}
//
// Values submitted through the portal are persisted before the connect
// callback runs. After the first AutoConnect, every disconnect event triggers
// a new attempt until Erase or Close is called or ctx is done. Only one
// attempt runs at a time; events arriving while one is in flight are dropped.
package coordinator
