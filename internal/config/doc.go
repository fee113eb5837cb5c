// Package config defines configuration structures for the mioinstall CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (MIO_ prefix)
//   - YAML configuration file
//
// # Example
//
//	root: /srv/minecraft
//	side: server
//	asset_workers: 64
//	library_workers: 8
//	prefer_mirror: true
//	mirrors:
//	  - prefix: https://libraries.minecraft.net/
//	    mirrors: [https://bmclapi2.bangbang93.com/maven/]
//	cache_bucket: s3://mio-artifacts?region=eu-west-1
//	java_homes:
//	  17: /usr/lib/jvm/java-17
//	retry:
//	  attempts: 5
//	  delay: 1s
//	log:
//	  format: json
//	  level: debug
package config
