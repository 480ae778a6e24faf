/*
Package rules 实现交易校验中与硬件无关的规则。

标准校验路径和硬件优化路径共用本包中的全部结构检查与历史漏洞回归检查：

  - 输入输出非空
  - 重复输出点（CVE-2018-17144）
  - 解锁脚本中被禁用的 0x6f 字节
  - 高 S 值 DER 签名（可延展性）
  - 输出总额饱和累加不超过 MaxMoney（CVE-2010-5139）

Taproot 结构校验按输入和输出拆分为独立函数，硬件加速实现可以按块调用它们，
保证与 CheckTaproot 得到相同的结果。

错误通过 Error 类型返回，调用方使用 IsErrorKind 判断类别。
*/
package rules
