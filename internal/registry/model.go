package registry

// Worker is a directory profile for a payroll recipient. Address is the
// principal identifier streams pay to; Employer is the principal that
// manages the worker's active status.
type Worker struct {
	Address   string
	Employer  string
	Name      string
	Role      string
	Active    bool
	CreatedAt int64
}
