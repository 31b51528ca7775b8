package bitvavotest

// OrderID is the id of the single order the fake account holds.
const OrderID = "ff403e21-e270-4584-bc48-4d1f0a4ed3a8"

const (
	assetBTCJSON = `{"symbol":"BTC","name":"Bitcoin","decimals":8,"depositFee":"0","depositConfirmations":10,"depositStatus":"OK","withdrawalFee":"0.2","withdrawalMinAmount":"0.2","withdrawalStatus":"OK","networks":["Mainnet"],"message":""}`
	assetEURJSON = `{"symbol":"EUR","name":"Euro","decimals":2,"depositFee":"0","depositConfirmations":0,"depositStatus":"OK","withdrawalFee":"0","withdrawalMinAmount":"1","withdrawalStatus":"MAINTENANCE","networks":["SEPA"]}`

	marketBTCJSON = `{"market":"BTC-EUR","status":"trading","base":"BTC","quote":"EUR","pricePrecision":5,"minOrderInBaseAsset":"0.0001","minOrderInQuoteAsset":"5","maxOrderInBaseAsset":"1000","maxOrderInQuoteAsset":"1000000000","orderTypes":["market","limit","stopLoss","stopLossLimit","takeProfit","takeProfitLimit"]}`
	marketETHJSON = `{"market":"ETH-EUR","status":"halted","base":"ETH","quote":"EUR","pricePrecision":5,"minOrderInBaseAsset":"0.001","minOrderInQuoteAsset":"5","maxOrderInBaseAsset":"10000","maxOrderInQuoteAsset":"1000000000","orderTypes":["market","limit"]}`

	tradesJSON = `[
		{"id":"57b1159b-6bf5-4cde-9e2c-6bd6a5678baf","timestamp":1700000000500,"amount":"0.1","price":"30005","side":"sell"},
		{"id":"8a55f8a2-96cc-45e7-8d19-9bc6e2ae9d4a","timestamp":1700000000100,"amount":"2.5","price":"30000","side":"buy"}
	]`

	candlesJSON = `[
		[1700000000000,"30000","30100","29900","30050","12.5"],
		[1699996400000,"29800","30010","29750","30000","8.25"]
	]`

	tickerPriceJSON = `[{"market":"BTC-EUR","price":"30005"},{"market":"ETH-EUR","price":"2000.5"},{"market":"NEW-EUR"}]`
	tickerBookJSON  = `[{"market":"BTC-EUR","bid":"30000","bidSize":"1.5","ask":"30010","askSize":"0.8"},{"market":"ETH-EUR","bid":"2000","bidSize":"3","ask":"2001","askSize":"4"}]`
	ticker24hJSON   = `[{"market":"BTC-EUR","startTimestamp":1699913600000,"timestamp":1700000000000,"open":"29000","openTimestamp":1699913600100,"high":"30500","low":"28800","last":"30005","closeTimestamp":1699999999000,"bid":"30000","bidSize":"1.5","ask":"30010","askSize":"0.8","volume":"412.5","volumeQuote":"12250000"},{"market":"ETH-EUR","startTimestamp":1699913600000,"timestamp":1700000000000,"open":null,"high":null,"low":null,"last":null,"volume":"0","volumeQuote":"0"}]`

	accountJSON = `{"fees":{"taker":"0.0025","maker":"0.0015","volume":"10000.00"}}`
	feesJSON    = `{"tier":1,"volume":"10000.00","taker":"0.0025","maker":"0.0015"}`
	balanceJSON = `[{"symbol":"BTC","available":"1.57593193","inOrder":"0.74832374"},{"symbol":"EUR","available":"1000","inOrder":"0"}]`

	depositInfoJSON       = `{"address":"bc1qexampleaddress","paymentId":"10002653"}`
	depositHistoryJSON    = `[{"timestamp":1542967486256,"symbol":"BTC","amount":"0.99994","address":"bc1qexampleaddress","paymentId":"10002653","txId":"927b3ea50c5bb52c6854152d305dfa1e27fc01d10464cf10825d96d69d235eb3","fee":"0","status":"completed"}]`
	withdrawalHistoryJSON = `[{"timestamp":1542967486256,"symbol":"BTC","amount":"0.99994","address":"bc1qotheraddress","txId":"927b3ea50c5bb52c6854152d305dfa1e27fc01d10464cf10825d96d69d235eb3","fee":"0.00006","status":"awaiting_processing"}]`

	orderJSON = `{"orderId":"` + OrderID + `","clientOrderId":null,"market":"BTC-EUR","created":1700000000000,"updated":1700000000500,"status":"partiallyFilled","side":"buy","orderType":"limit","amount":"0.5","amountRemaining":"0.3","price":"29000","filledAmount":"0.2","filledAmountQuote":"5800","feePaid":"8.7","feeCurrency":"EUR"}`
)
