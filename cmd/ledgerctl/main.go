// Package main — ledgerctl, служебная утилита heartpoints.
package main

import "serotonyl.ru/heartpoints/cmd/ledgerctl/root"

func main() {
	root.Execute()
}
