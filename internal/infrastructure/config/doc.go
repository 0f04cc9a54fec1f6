// Package config loads the daemon configuration: YAML file first,
// BLEADV_* environment variables on top, defaults for anything left
// unset, then a single validation pass over the result including the
// configured device inventory.
//
// Loading happens once at startup. Secrets (broker password, InfluxDB
// token) belong in environment variables rather than the file, and the
// file itself should be mode 0600.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
