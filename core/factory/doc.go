// Package factory maps backend names from the configuration to constructors.
// A ModuleConfig names a registered type and carries its raw settings, which
// the constructor decodes with Decode:
//
//	reg := factory.NewRegistry[eventlog.Store]()
//	_ = reg.Register("sqlite", func(conf map[string]any) (eventlog.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return eventlog.NewSQLiteStore(c.Path)
//	})
//	st, err := reg.Create(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": "events.db"}})
package factory
