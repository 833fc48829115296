// Package jobs defines the core records, collaborator interfaces, and error
// kinds shared by the scrape, enrich, and persistence stages of a run.
package jobs
