package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           llmproxy API
// @version         1.0
// @description     HTTP proxy in front of a local Ollama inference server.
//
// @contact.name   llmproxy maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
