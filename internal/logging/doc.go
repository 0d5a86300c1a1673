// Package logging sets up structured slog logging for watchset.
//
// Without --debug the CLI logs warnings to stderr only. With --debug every
// record at debug level and above is also written as JSON to a rotating
// file under ~/.watchset/logs/.
package logging
