// Package audible fetches audiobook search results and product records from
// the Audible catalog API.
//
// Every outbound call goes through a shared RateLimiter and a bounded retry
// policy; paginated searches consult the on-disk result Cache page by page.
// Raw product records are mapped into catalog.Entry values with language and
// podcast records filtered out and contributor roles removed from authors.
//
// Fetch failures are scoped to the page they occur on. Search and
// SearchParallel never return an error: a failing page ends pagination and the
// pages already retrieved are returned.
package audible
