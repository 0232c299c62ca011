// Package nmdriver drives a Wi-Fi device through NetworkManager on the
// system D-Bus.
//
// Driver implements coordinator.NetworkDriver and the portal's Connector
// and AccessPointHost. Link events come from the device's StateChanged
// signal: entering the activated state is a connect, leaving it is a
// disconnect. Saved credentials are NetworkManager connection profiles of
// type 802-11-wireless.
package nmdriver
