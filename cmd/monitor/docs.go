package main

//go:generate swag init -g cmd/monitor/main.go -o docs

// @title           ModularGrid Deal Monitor API
// @version         0.1.0
// @description     Marketplace scanning, price statistics, watchlist, and deal history.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
