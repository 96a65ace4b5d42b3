package metrics

const (
	namespaceNode    = "vbcd"
	subsystemCache   = "cache"
	subsystemSweep   = "sweep"
	subsystemRecover = "recovery"
	subsystemStartup = "bootstrap"
	subsystemJobs    = "jobqueue"
	subsystemIO      = "io"
)

const (
	LabelResource = "resource"
	LabelStep     = "step"
	LabelStrategy = "strategy"
	LabelJob      = "job"
)

const (
	ResourceUndefined       = "undefined"
	ResourceTreeNodeCache   = "treenode_cache"
	ResourceFullBelowCache  = "fullbelow_cache"
	ResourceNodeStoreCache  = "nodestore_cache"
	ResourceTempNodeCache   = "temp_node_cache"
	ResourceLedgerHistory   = "ledger_history"
	ResourceAcceptedLedgers = "accepted_ledger_cache"
	ResourceCachedEntries   = "cached_sles"
	ResourceMasterTx        = "master_transaction"
	ResourceValidations     = "validations"
	ResourceInboundLedgers  = "inbound_ledgers"
)
