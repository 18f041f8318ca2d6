package models

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Profile{},
		&UserRole{},
		&Ticket{},
		&Question{},
		&Result{},
	}
}
