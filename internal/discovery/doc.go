// Package discovery finds running provisioning portals over mDNS.
//
// A portal session advertises itself as a "_wifiprov._tcp" service whose
// instance name is the access point name. TXT records carry "ap" (the access
// point name) and "path" (the parameter listing endpoint).
//
// Browsing requires multicast on the local segment and UDP port 5353.
//
//	portals, err := discovery.NewScanner().Scan(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, p := range portals {
//	    fmt.Println(p.AccessPoint, p.BaseURL())
//	}
package discovery
