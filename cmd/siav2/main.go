// Package main is the entry point for the SIA v2 query service.
//
//	@title			SIA v2 Query Service
//	@version		1.0
//	@description	IVOA Simple Image Access v2 queries over Rubin data collections.
//
//	@contact.name	Rubin Observatory
//	@contact.url	https://github.com/lsst-sqre/vo-siav2/issues
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@BasePath		/api/sia
//
//	@securityDefinitions.apikey	DelegatedToken
//	@in							header
//	@name						X-Auth-Request-Token
//	@description				Delegated token forwarded to REMOTE repositories
package main

func main() {
	Execute()
}
