// Package filter narrows SRD listings by name, equipment category,
// creature type and challenge rating.
//
// The gateway applies the filters in a fixed order:
//
//  1. ByName on the listing stubs
//  2. ByAlias for item alias categories (sword, light-armor, ...)
//  3. ByType and ByChallenge on enriched monster documents
//
// Documents from the SRD API are loosely typed. Every accessor here
// tolerates missing or oddly typed fields: a document without a name never
// matches a name filter, and a missing challenge rating counts as 0.
package filter
