// Package logx configures econbot's structured logging.
//
// It is a small wrapper (logx.Logger) on top of zerolog:
//   - Console output stays readable (short timestamp + short caller)
//   - File output is JSON lines
//   - The zero value and Nop() are safe no-op loggers for tests
package logx
