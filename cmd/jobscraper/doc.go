// Command jobscraper runs one incremental scrape of a job board.
//
// A run fetches the board page, splits it into listings, skips every listing
// whose URL is already recorded, renders the remaining listing pages and
// extracts their text, then appends the new rows to the tabular store and
// uploads two blobs per record. Failed listings are retried a fixed number of
// times with a fixed delay and then dropped; the run itself only fails when
// the board cannot be read, the existing keys cannot be read, or persistence
// fails.
//
// Backends:
//   - Tabular store: Google Sheets (default), Postgres, or memory.
//   - Blob store: Google Drive (default), Cloud Storage, a local directory, or memory.
//   - Renderer: chromedp (headless or headed) or a plain HTTP fetch when
//     renderer.enabled is false.
//   - Optional: Pub/Sub announcements of new records, a Prometheus push
//     gateway, and a Postgres run ledger.
//
// Configuration comes from an optional file passed with -config and from
// JOBSCRAPER_* environment variables (for example JOBSCRAPER_SHEETS_SPREADSHEET_ID).
// Google credentials are read from GOOGLE_APPLICATION_CREDENTIALS, which may
// hold either a key file path or the service account JSON itself.
//
// Run locally: go run ./cmd/jobscraper -config config.yaml
package main
