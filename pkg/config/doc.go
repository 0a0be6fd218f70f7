/*
Package config loads the YAML configuration files of the controller and the
agent.

Defaults are applied first, then the file (if any) is decoded over them with
gopkg.in/yaml.v3, and finally command-line flags override individual fields
in the cmd packages. Durations use Go syntax ("30s", "5m").

A controller file:

	api_addr: ":7400"
	http_addr: ":7401"
	data_dir: /var/lib/downtime
	tick_interval: 30s
	timezone: Europe/Madrid
	push:
	  attempts: 3
	  base_delay: 1s
	  write_timeout: 5s
	log:
	  level: info
	  json: true

An agent file:

	server_addr: controller.lan:7400
	channel_url: ws://controller.lan:7401/ws
	id_file: /var/lib/downtime-agent/client-id
	heartbeat_interval: 30s
	offline_after: 90s
	timezone: Europe/Madrid
	block_command: ["nft", "add", "rule", "inet", "filter", "output", "drop"]
	unblock_command: ["nft", "flush", "chain", "inet", "filter", "output"]

Instead of commands, an agent can rewrite a rules file and reload the
service reading it:

	rules_file:
	  path: /etc/squid/conf.d/downtime.conf
	  paused: "http_access deny all\n"
	  allowed: "http_access allow all\n"
	  reload: ["squid", "-k", "reconfigure"]
*/
package config
