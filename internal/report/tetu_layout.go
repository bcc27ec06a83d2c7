package report

// The .TET_U declaration is a single line of exactly tetuFieldCount fields
// joined by "|". Constants below name the 1-based slot of every field the
// engine fills; unnamed slots are authority reserve and render "0" (numeric
// region) or empty (text region).
const tetuFieldCount = 112

// Header identity, slots 1-10.
const (
	fDeclarationCode = 1  // 申報書別, e.g. 401
	fTaxRegistration = 2  // 稅籍編號
	fTaxpayerID      = 3  // 統一編號
	fPeriod          = 4  // 所屬年月份 yyyMM
	fFilingKind      = 5  // 申報種類
	fBusinessName    = 6
	fIndustryCode    = 7
	fHeadOfficeID    = 8  // 總機構統一編號
	fConsolidated    = 9  // 總繳註記
	fChannelMark     = 10 // 申報方式註記
)

// Output (sales) buckets, slots 11-32. Each bucket carries taxable sales,
// output tax, and zero-rate sales in consecutive slots.
const (
	fSalesTriplicate     = 11 // 三聯式發票 (31)
	fSalesElectronic     = 14 // 三聯式收銀機/電子發票 (35)
	fSalesDuplicate      = 17 // 二聯式發票/二聯式收銀機 (32)
	fSalesNoInvoice      = 20 // 免用統一發票銷售額 (config)
	fSalesReturns        = 23 // 減:銷貨退回及折讓 (33, 34)
	fSalesTotal          = 26
	fSalesExempt         = 29 // 免稅銷售額
	fSalesGrandTotal     = 30 // 銷售額總計
	fSalesSpecialRate    = 31 // 特種稅額銷售額
	fSalesReservedEnd    = 32
)

// Input (deduction) buckets, slots 33-60. Each bucket carries expense
// amount, expense tax, fixed-asset amount, and fixed-asset tax.
const (
	fInputTriplicate   = 33 // 統一發票扣抵聯 (21)
	fInputElectronic   = 37 // 三聯式收銀機/電子發票扣抵聯 (25)
	fInputOtherVoucher = 41 // 載有稅額之其他憑證 (22)
	fInputCustoms      = 45 // 海關代徵營業稅繳納證 (config)
	fInputReturns      = 49 // 減:進貨退出及折讓 (23, 24)
	fInputTotal        = 53
	fInputGrossAmount  = 57 // 進項總金額
	fInputNonDeduct    = 58 // 不得扣抵進項稅額
)

// Tax computation, slots 61-76.
const (
	fOutputTax          = 61 // 銷項稅額合計
	fDeductibleInputTax = 62 // 可扣抵進項稅額合計
	fCarryForward       = 63 // 上期累積留抵稅額
	fAdjustmentAdd      = 64
	fAdjustmentSubtract = 65
	fSubtotal           = 66 // 本期應實繳(+)或留抵(-)前小計
	fPayable            = 67 // 本期應納稅額
	fCreditNext         = 68 // 本期留抵稅額
	fRefundCeiling      = 69 // 得退稅限額
	fRefundable         = 70 // 本期應退稅額
	fCreditAfterRefund  = 71 // 退稅後累積留抵
	fRefundMethod       = 72 // 退稅方式: 0 無 1 匯款 2 支票
	fZeroRateTotal      = 73
	fFixedAssetTax      = 74 // 固定資產可扣抵稅額
	fBondedZoneMark     = 75
)

// Invoice usage counts, slots 77-84.
const (
	fOutputInvoiceCount = 77 // 開立發票張數
	fUnusedCount        = 78 // 空白未使用張數
	fVoidedCount        = 79 // 作廢張數
)

// Declarer identity, slots 85-96 (text region).
const (
	fDeclarerName     = 85
	fDeclarerID       = 86
	fDeclarerPhone    = 87
	fAgentName        = 88
	fAgentRegistration = 89
	fAgencyMark       = 90
	fFilingDate       = 91 // ROC yyyMMdd
	fTextReservedEnd  = 96
)

// Trailing authority reserve: slots 97-111 render "0", slot 112 the end
// mark.
const (
	fTrailerStart = 97
	fEndMark      = 112
)
