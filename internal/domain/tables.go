package domain

var Tables = []interface{}{
	// System
	&SysOprLog{},
	// Catalog
	&Product{},
	&Order{},
	&OrphanAsset{},
}
