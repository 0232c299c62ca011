// Package configstore persists provisioning parameter values across reboots.
//
// The store keeps a flat key/value mapping in a single backing file and
// mirrors it in an in-memory cache. The file format is deliberately trivial
// so it can be inspected and repaired by hand on a device:
//
//	mqtt_server
//	broker.local
//	mqtt_port
//	1883
//
// Each entry is two lines, the id and then the value. Values are not
// escaped, so a value containing a line break corrupts the file. A file with
// an odd number of lines (for example after power loss during a save) still
// loads; the trailing id without a value is ignored.
//
// # Usage Example
//
//	store := configstore.New(configstore.NewDirStorage("/data/wifiprov"))
//	if err := store.Load(); err != nil {
//	    // OpenError or ReadError: storage is unavailable
//	}
//	server := store.Get("mqtt_server") // "" when never saved
//
//	err := store.Save([]configstore.Entry{{ID: "mqtt_server", Value: "broker.local"}})
//
// # Caching
//
// Get never touches storage. Load replaces the whole cache, but only after
// the file parsed, so a failed Load keeps the previous contents. Save
// replaces the cache before writing, so between computing a save and
// finishing the write the cache is the source of truth.
//
// # Error Handling
//
// Failures are *StoreError values classified by ErrorType. Use IsOpenError,
// IsWriteError, IsReadError and IsPortalError to inspect them.
//
// # Storage Backends
//
// DirStorage writes to a directory on the local filesystem. MemStorage keeps
// files in memory and can inject mount, open, write and read faults.
package configstore
