// Package device provides the device model, validation, partial-update
// merging and the Device Registry of the smart home core.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                          Device Registry                          │
//	│                                                                   │
//	│  ┌──────────────┐   ┌──────────────┐   ┌───────────────────────┐  │
//	│  │   Registry   │──▶│    Merge     │──▶│      Validation       │  │
//	│  │ (registry.go)│   │  (merge.go)  │   │    (validation.go)    │  │
//	│  │ • CRUD       │   │ • overlay    │   │ • ranges, enums       │  │
//	│  │ • observers  │   │ • type check │   │ • time, hex colour    │  │
//	│  └──────┬───────┘   └──────────────┘   │ • read-only fields    │  │
//	│         │                              └───────────────────────┘  │
//	└─────────│─────────────────────────────────────────────────────────┘
//	          ▼
//	  Repository: SQLite │ Postgres │ memory
//
// # Key Types
//
//   - Device: stored device (id, type, name, room, status, parameters)
//   - Parameters: closed sum type, one variant per DeviceType
//   - Update: partial change; nil fields are left unchanged
//   - Change: completed mutation reported to observers
//
// # Parameter variants
//
// The variant is always selected explicitly: DecodeDevice uses the payload's
// own type field and DecodeUpdate takes the stored device's type as an
// argument. Parameters whose keys belong to a different type surface as
// *TypeMismatchError.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//	registry.AddObserver(bus)
//
//	dev, err := device.DecodeDevice(body)
//	if err != nil {
//	    return err
//	}
//	stored, err := registry.CreateDevice(ctx, dev)
//
// # Thread Safety
//
// Validation and merging are pure functions. Registry methods are safe for
// concurrent use; they hold no lock across repository calls.
package device
