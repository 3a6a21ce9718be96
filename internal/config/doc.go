// Package config provides the configuration of a sitecrawl run.
//
// A Config starts from NewConfig defaults and is layered in this order:
// the config file (.sitecrawl, YAML or JSON), the environment (WEBDRIVER_URL,
// optionally read from a .env file) and finally the CLI flags the user set
// explicitly. Validate is called once before any crawling begins.
//
// Example .sitecrawl:
//
//	type: web
//	start_url: https://example.com/docs/
//	max_concurrency: 4
//	exclude_patterns:
//	  - "/changelog/"
//	sites:
//	  example.com:
//	    cookie: "session=abc123"
package config
