package domain

// WatchedAssetIDs is the fixed list of CoinGecko ids polled every cycle.
var WatchedAssetIDs = []string{
	"dogecoin",
	"shiba-inu",
	"pepe",
	"dogwifcoin",
	"bonk",
	"floki",
	"brett-based",
	"popcat",
	"mog-coin",
	"cat-in-a-dogs-world",
	"book-of-meme",
	"pepecoin-2",
	"wojak",
	"turbo",
	"ladys",
	"jeo-boden",
	"slerf",
	"myro",
	"samoyedcoin",
	"degen-base",
	"baby-doge-coin",
	"kishu-inu",
	"akita-inu",
	"hoge-finance",
	"dogelon-mars",
	"saitama-inu",
	"based-brett",
	"higher",
	"toshi",
	"normie",
	"keycat",
	"basenji",
	"tybg",
	"doginme",
	"gigachad-2",
	"apu-apustaja",
	"landwolf-0x67",
	"mumu-the-bull-3",
	"ponke",
	"retardio",
	"hoppy",
	"andy-ethereum",
	"goatseus-maximus",
	"fartcoin",
	"ai16z",
	"banana-gun",
	"maga",
	"tremp",
}
