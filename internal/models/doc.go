// package models defines the canonical data model shared by the ETL stages:
// normalized playlist entries, canonical tracks, placement records, combined
// playlist entries and popularity samples.
package models
