// Package rate provides the sliding-window rate limiter behind Engine request
// checks, plus the path/method heuristic that classifies operations.
//
// # Window semantics
//
// Per (identifier, class) key a Redis sorted set holds the timestamps of
// retained requests. One Lua script prunes entries older than the window,
// compares the count to the class limit, and appends the current timestamp only
// when under the limit — check and append cannot race. Key prefix: rl:.
//
// # What this package must NOT do
//
//   - Decide identifiers. Callers resolve userID / wallet / anonymous bucket.
//   - Be imported outside the gridauth module.
package rate
