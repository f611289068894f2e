// Package service glues the task registry, the worker pool and the
// script engine into the operation set the outer transport layer
// consumes: submit, get, list, cancel and delete. It owns no transport
// concerns; callers translate its errors into whatever surface they
// expose.
package service
