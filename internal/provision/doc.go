// Package provision implements the workspace-provisioning pipeline: cloning
// an org's dbt repository, materializing an isolated Python environment,
// installing dbt core and the warehouse adapter, and persisting the
// resulting workspace record. Each step reports to the task's progress log
// and the first failure terminates the run; the next run's directory cleanup
// is the recovery mechanism.
package provision
