// Package expr provides CEL (Common Expression Language) environments for
// user-defined metric expressions.
//
// Environments include the CEL math, strings and lists extensions plus
// numeric helpers:
//   - abs, sqrt, log, exp (double -> double)
//   - pow (double, double -> double)
//   - indicator (bool -> double), 1.0 when true
//
// Metric expressions see the variables:
//   - `t` (dyn): the true value of one row
//   - `p` (dyn): the predicted value of one row
package expr
