// Package main provides the go-appfeed CLI, which turns the .ipa assets of a
// GitHub repository's releases into an app source feed.
//
// The building blocks live in the pkg subpackages:
//
//	import "github.com/aluedeke/go-appfeed/pkg/resolver"
//	import "github.com/aluedeke/go-appfeed/pkg/feed"
//
// # Installation
//
//	go install github.com/aluedeke/go-appfeed@latest
//
// # Configuration
//
// Settings are read from appfeed.yaml, then .env, then the environment, and
// finally the command line:
//
//	repository: apptesters-org/Repo
//	feed: apps.json
//	cache:
//	  backend: csv
//	  path: bundleId.csv
//	icons:
//	  backend: dir
//	  dir: icons
//	deletion:
//	  policy: never
package main
