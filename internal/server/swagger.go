package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title a11ygate API
// @version 0.1
// @description Interactive documentation for the a11ygate accessibility scan API.
// @contact.name a11ygate Maintainers
// @contact.url https://github.com/a11ygate/a11ygate
// @BasePath /
