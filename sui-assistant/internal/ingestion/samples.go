package ingestion

// Sample is a short built-in document used to seed an empty store.
type Sample struct {
	Collection string
	Type       string
	Content    string
}

// SampleDocuments cover the Sui basics and the VIVON platform.
var SampleDocuments = []Sample{
	{
		Collection: CollectionSuiDocs,
		Type:       "overview",
		Content:    "Sui is a layer-1 blockchain designed to make digital asset ownership fast, private, secure, and accessible to everyone. Sui uses the Move programming language, which is designed for safe and secure smart contract development.",
	},
	{
		Collection: CollectionSuiDocs,
		Type:       "move_language",
		Content:    "Move is a programming language for writing safe smart contracts. It was originally developed for the Diem blockchain and is now used by Sui. Move uses a resource-oriented programming model with linear types.",
	},
	{
		Collection: CollectionSuiDocs,
		Type:       "objects",
		Content:    "Sui objects are the basic units of storage in Sui. Every object has a globally unique ID, a version number, and a digest. Objects can be owned by addresses, other objects, or shared.",
	},
	{
		Collection: CollectionSuiDocs,
		Type:       "development",
		Content:    "To create a new Move package, use the sui move new command. This creates a new directory with the basic structure needed for a Move package including Move.toml and sources directory.",
	},
	{
		Collection: CollectionVivonDocs,
		Type:       "overview",
		Content:    "VIVON is a Web3 bounty and challenge platform built on the Sui blockchain. It allows developers to create bounties, participate in challenges, and earn VIVON tokens and NFTs as rewards.",
	},
	{
		Collection: CollectionVivonDocs,
		Type:       "bounty_creation",
		Content:    `To create a bounty on VIVON, connect your Sui wallet, navigate to the bounties section, and click "Create Bounty". You'll need to specify the requirements, reward amount, and deadline.`,
	},
	{
		Collection: CollectionVivonDocs,
		Type:       "tokenomics",
		Content:    "VIVON tokens are the native utility tokens of the VIVON platform. They are used for bounty rewards, challenge prizes, and governance participation. Tokens are distributed through completed bounties and challenges.",
	},
	{
		Collection: CollectionVivonDocs,
		Type:       "nfts",
		Content:    "VIVON NFTs are achievement badges and rewards given for completing challenges and bounties. They represent proof of skill and contribution to the VIVON ecosystem.",
	},
}
